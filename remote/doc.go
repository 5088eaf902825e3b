// Package remote implements recovery.Service against a JSON HTTP API.
//
// Every call is a POST with a JSON body. A 2xx answer decodes into
// recovery.Response; a 4xx/5xx answer becomes *recovery.ServerError carrying
// the "error" field of the body; a request that never produced a response
// becomes *recovery.TransportError and is retried up to Config.MaxRetries
// times with exponential backoff.
package remote
