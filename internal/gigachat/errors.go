package gigachat

import "errors"

// ErrAuth means the token endpoint itself failed; the call cannot proceed
var ErrAuth = errors.New("gigachat authorization failed")

// ErrGateway means the chat endpoint failed after retries or returned a
// response the client could not parse
var ErrGateway = errors.New("gigachat request failed")
