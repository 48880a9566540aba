// Package environment parses the APP_ENV value and carries it through
// request contexts and structured logs.
//
//	env, err := environment.Parse(os.Getenv("APP_ENV"))
//	router.Use(environment.Middleware(env))
//
// Handlers read it back with FromContext or the IsProduction and IsStaging
// predicates.
package environment
