package common

type contextKey string

// AuthInfoKey indexes the validated JWT claims in a request context.
const AuthInfoKey contextKey = "authInfo"
