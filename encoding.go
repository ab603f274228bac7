package worker

// encodingJS installs atob/btoa, TextEncoder/TextDecoder, and the binary
// helpers (__bytesToB64 / __b64ToBytes) the other polyfills use to move
// bytes across the op bridge. Pure JS avoids boundary issues with binary
// strings containing null bytes.
const encodingJS = `
(function() {
	var ALPHABET = 'ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/';
	var DECODE = new Uint8Array(128);
	for (var i = 0; i < ALPHABET.length; i++) DECODE[ALPHABET.charCodeAt(i)] = i;

	function bytesToB64(bytes) {
		var out = [];
		var len = bytes.length;
		for (var i = 0; i < len; i += 3) {
			var a = bytes[i];
			var b = i + 1 < len ? bytes[i + 1] : 0;
			var c = i + 2 < len ? bytes[i + 2] : 0;
			out.push(
				ALPHABET[a >> 2],
				ALPHABET[((a & 3) << 4) | (b >> 4)],
				i + 1 < len ? ALPHABET[((b & 15) << 2) | (c >> 6)] : '=',
				i + 2 < len ? ALPHABET[c & 63] : '='
			);
		}
		return out.join('');
	}

	function b64ToBytes(b64) {
		b64 = String(b64).replace(/[\t\n\f\r ]/g, '');
		var pad = 0;
		if (b64.length > 0 && b64[b64.length - 1] === '=') pad++;
		if (b64.length > 1 && b64[b64.length - 2] === '=') pad++;
		var outLen = (b64.length / 4) * 3 - pad;
		var bytes = new Uint8Array(outLen);
		var j = 0;
		for (var i = 0; i < b64.length; i += 4) {
			var a = DECODE[b64.charCodeAt(i)];
			var b = DECODE[b64.charCodeAt(i + 1)];
			var c = DECODE[b64.charCodeAt(i + 2)];
			var d = DECODE[b64.charCodeAt(i + 3)];
			bytes[j++] = (a << 2) | (b >> 4);
			if (j < outLen) bytes[j++] = ((b & 15) << 4) | (c >> 2);
			if (j < outLen) bytes[j++] = ((c & 3) << 6) | d;
		}
		return bytes;
	}

	globalThis.__bytesToB64 = bytesToB64;
	globalThis.__b64ToBytes = b64ToBytes;

	globalThis.btoa = function(data) {
		if (arguments.length < 1) throw new TypeError('btoa requires at least 1 argument');
		var s = String(data);
		var bytes = new Uint8Array(s.length);
		for (var i = 0; i < s.length; i++) {
			var ch = s.charCodeAt(i);
			if (ch > 255) throw new DOMException('btoa: string contains characters outside of the Latin1 range', 'InvalidCharacterError');
			bytes[i] = ch;
		}
		return bytesToB64(bytes);
	};

	globalThis.atob = function(data) {
		if (arguments.length < 1) throw new TypeError('atob requires at least 1 argument');
		var b64 = String(data).replace(/[\t\n\f\r ]/g, '');
		if (b64.length % 4 === 1) throw new DOMException('atob: invalid base64 string', 'InvalidCharacterError');
		if (!/^[A-Za-z0-9+/]*={0,2}$/.test(b64)) throw new DOMException('atob: invalid base64 string', 'InvalidCharacterError');
		while (b64.length % 4 !== 0) b64 += '=';
		var bytes = b64ToBytes(b64);
		var CHUNK = 4096;
		var result = '';
		for (var i = 0; i < bytes.length; i += CHUNK) {
			result += String.fromCharCode.apply(null, bytes.subarray(i, Math.min(i + CHUNK, bytes.length)));
		}
		return result;
	};

	function utf8Encode(s) {
		s = s === undefined ? '' : String(s);
		var out = [];
		for (var i = 0; i < s.length; i++) {
			var cp = s.codePointAt(i);
			if (cp > 0xFFFF) i++;
			if (cp < 0x80) {
				out.push(cp);
			} else if (cp < 0x800) {
				out.push(0xC0 | (cp >> 6), 0x80 | (cp & 63));
			} else if (cp < 0x10000) {
				out.push(0xE0 | (cp >> 12), 0x80 | ((cp >> 6) & 63), 0x80 | (cp & 63));
			} else {
				out.push(0xF0 | (cp >> 18), 0x80 | ((cp >> 12) & 63), 0x80 | ((cp >> 6) & 63), 0x80 | (cp & 63));
			}
		}
		return new Uint8Array(out);
	}

	function utf8Decode(bytes, fatal) {
		var out = '';
		var i = 0;
		while (i < bytes.length) {
			var b = bytes[i];
			var cp, extra;
			if (b < 0x80) { cp = b; extra = 0; }
			else if ((b & 0xE0) === 0xC0) { cp = b & 31; extra = 1; }
			else if ((b & 0xF0) === 0xE0) { cp = b & 15; extra = 2; }
			else if ((b & 0xF8) === 0xF0) { cp = b & 7; extra = 3; }
			else {
				if (fatal) throw new TypeError('invalid UTF-8');
				out += '�'; i++; continue;
			}
			var ok = true;
			for (var k = 1; k <= extra; k++) {
				var nb = bytes[i + k];
				if (nb === undefined || (nb & 0xC0) !== 0x80) { ok = false; break; }
				cp = (cp << 6) | (nb & 63);
			}
			if (!ok) {
				if (fatal) throw new TypeError('invalid UTF-8');
				out += '�'; i++; continue;
			}
			out += String.fromCodePoint(cp);
			i += extra + 1;
		}
		return out;
	}

	class TextEncoder {
		get encoding() { return 'utf-8'; }
		encode(input) { return utf8Encode(input); }
		encodeInto(input, dest) {
			var bytes = utf8Encode(input);
			var written = Math.min(bytes.length, dest.length);
			dest.set(bytes.subarray(0, written));
			return { read: input.length, written: written };
		}
	}

	class TextDecoder {
		constructor(label, options) {
			var enc = (label || 'utf-8').toLowerCase();
			if (enc !== 'utf-8' && enc !== 'utf8' && enc !== 'unicode-1-1-utf-8') {
				throw new RangeError('unsupported encoding: ' + label);
			}
			this.encoding = 'utf-8';
			this.fatal = !!(options && options.fatal);
			this.ignoreBOM = !!(options && options.ignoreBOM);
		}
		decode(input) {
			if (input === undefined) return '';
			var bytes;
			if (input instanceof ArrayBuffer) bytes = new Uint8Array(input);
			else if (ArrayBuffer.isView(input)) bytes = new Uint8Array(input.buffer, input.byteOffset, input.byteLength);
			else throw new TypeError('decode requires an ArrayBuffer or view');
			if (!this.ignoreBOM && bytes.length >= 3 && bytes[0] === 0xEF && bytes[1] === 0xBB && bytes[2] === 0xBF) {
				bytes = bytes.subarray(3);
			}
			return utf8Decode(bytes, this.fatal);
		}
	}

	globalThis.TextEncoder = TextEncoder;
	globalThis.TextDecoder = TextDecoder;
})();
`
