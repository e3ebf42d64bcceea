/*
Package sandbox runs composed preview documents headlessly.

Every run gets a brand new goja VM. The document is parsed with goquery and
its inline scripts execute in document order against a small browser
surface:

  - window, self and parent.postMessage
  - console (native sink, wrapped by the bridge preamble)
  - alert, confirm and prompt as blocking primitives that only record calls
  - addEventListener on window and document, with error, unhandledrejection,
    DOMContentLoaded and load events
  - setTimeout, setInterval and requestAnimationFrame on a virtual clock
  - a document proxy over the parsed body

Exceptions thrown by page code are dispatched to error listeners with a
document-relative line number and never surface as Go errors. Run only
returns an error for host failures: timeout, cancelled context, or a
closed pool.

	rt := sandbox.New(sandbox.DefaultConfig(), logger)
	res, err := rt.Run(ctx, doc, func(ev bridge.Event) {
		agg.OnEvent(ev)
	})
*/
package sandbox
