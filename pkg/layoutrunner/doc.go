// Package layoutrunner hosts the shared abstractions for running layoutprobe
// scenario catalogs. It exposes the `Executor` interface plus helpers
// (`BuildDependencies`, `Resolve`) so CLI packages can inject a browser launcher
// and writers once and obtain a runner, while unit tests swap in fakes.
package layoutrunner
