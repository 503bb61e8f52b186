package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	functionBodyTemplateConstant = "(async () => {\n%s\n})()"

	selectResultOKConstant             = "ok"
	selectResultMissingElementConstant = "missing_element"
	selectResultMissingOptionConstant  = "missing_option"

	clickScriptTemplateConstant = `(() => {
  const expectedText = %s;
  const candidates = Array.from(document.querySelectorAll(%s));
  const target = candidates.find((element) => expectedText === "" || (element.textContent || "").includes(expectedText));
  if (!target) {
    return false;
  }
  target.scrollIntoView({ block: "center", inline: "nearest" });
  target.click();
  return true;
})()`

	selectScriptTemplateConstant = `(() => {
  const element = document.querySelector(%s);
  if (!element) {
    return "missing_element";
  }
  const value = %s;
  const options = Array.from(element.options || []);
  if (options.length > 0 && !options.some((option) => option.value === value)) {
    return "missing_option";
  }
  element.value = value;
  element.dispatchEvent(new Event("input", { bubbles: true }));
  element.dispatchEvent(new Event("change", { bubbles: true }));
  return "ok";
})()`
)

// FunctionExpression turns a function body into an awaited expression for Evaluate.
func FunctionExpression(body string) string {
	return fmt.Sprintf(functionBodyTemplateConstant, strings.TrimSpace(body))
}

func clickScript(selector string, text string) string {
	return fmt.Sprintf(clickScriptTemplateConstant, javascriptString(text), javascriptString(selector))
}

func selectScript(selector string, value string) string {
	return fmt.Sprintf(selectScriptTemplateConstant, javascriptString(selector), javascriptString(value))
}

func javascriptString(value string) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}

// decodeEvaluationResult converts the JSON returned by the page into Go values.
// An empty payload is the page's undefined.
func decodeEvaluationResult(payload []byte) (any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var decoded any
	if decodeError := json.Unmarshal(payload, &decoded); decodeError != nil {
		return nil, decodeError
	}
	return decoded, nil
}
