// Package client talks to the memberauth gRPC service.
//
// GRPCClient keeps the access and refresh tokens returned by Login and
// Refresh, sends the access token as "access_token" metadata on every call,
// and transparently refreshes once when the server reports an expired access
// token. Transport failures are mapped to ErrUnavailable and ErrUnauthorized;
// business rejections (invalid email, conflict, wrong credentials) come back
// as a Result with a non-OK status rather than as errors.
package client
