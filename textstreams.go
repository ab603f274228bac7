package worker

// textStreamsJS installs TextEncoderStream and TextDecoderStream on top
// of TransformStream.
const textStreamsJS = `
(function() {

class TextEncoderStream {
	constructor() {
		var encoder = new TextEncoder();
		var ts = new TransformStream({
			transform: function(chunk, controller) {
				controller.enqueue(encoder.encode(String(chunk)));
			}
		});
		this.readable = ts.readable;
		this.writable = ts.writable;
		this.encoding = 'utf-8';
	}
}

class TextDecoderStream {
	constructor(label, options) {
		var decoder = new TextDecoder(label, options);
		var ts = new TransformStream({
			transform: function(chunk, controller) {
				var out = decoder.decode(chunk);
				if (out.length > 0) controller.enqueue(out);
			}
		});
		this.readable = ts.readable;
		this.writable = ts.writable;
		this.encoding = decoder.encoding;
		this.fatal = decoder.fatal;
		this.ignoreBOM = decoder.ignoreBOM;
	}
}

class IdentityTransformStream extends TransformStream {
	constructor() {
		super();
	}
}

globalThis.TextEncoderStream = TextEncoderStream;
globalThis.TextDecoderStream = TextDecoderStream;
globalThis.IdentityTransformStream = IdentityTransformStream;

})();
`
