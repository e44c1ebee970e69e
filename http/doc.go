// Package http serves and calls function invocations over HTTP.
//
// # Serving
//
// [InvokeHandler] turns an entry point into an http.Handler. Every POST body
// is one invocation, traced and flushed by the otxfn boundary:
//
//	adapter := invoke.New(invoke.WithReference(cfg.Function.Handler))
//	http.Handle("/", otxfnhttp.InvokeHandler(adapter.Handle, otxfn.MustExportHandle()))
//
// Status codes: 200 result, 204 no value, 400 rejected payload, 405 not
// POST, 413 body too large, 500 anything else.
//
// # Calling
//
//	client := otxfnhttp.NewClient(otxfnhttp.WithTimeout(10 * time.Second))
//	out, err := otxfnhttp.Invoke(ctx, client, "http://orders-fn:8080/", payload)
//	if errors.Is(err, otxfnhttp.ErrRejected) {
//	    // the function refused the payload
//	}
package http
