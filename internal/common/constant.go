package common

// IdentityTokenHeaderName is the HTTP header carrying the identity-provider
// bearer token on authenticated requests.
const IdentityTokenHeaderName = "Authorization"

// OperatorKeyHeaderName carries the operator API key on ops requests.
const OperatorKeyHeaderName = "X-Operator-Key"
