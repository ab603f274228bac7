package worker

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"

	"github.com/google/uuid"
	v8 "github.com/tommie/v8go"
)

func hashByName(name string) (func() hash.Hash, bool) {
	switch name {
	case "SHA-1":
		return sha1.New, true
	case "SHA-256":
		return sha256.New, true
	case "SHA-384":
		return sha512.New384, true
	case "SHA-512":
		return sha512.New, true
	}
	return nil, false
}

// cryptoJS installs crypto.getRandomValues, crypto.randomUUID, and a
// crypto.subtle covering digest and HMAC sign/verify. Randomness, UUIDs,
// and hashing run host-side.
const cryptoJS = `
(function() {
	var opRandom = globalThis.__op_random_bytes;
	var opUUID = globalThis.__op_random_uuid;
	var opDigest = globalThis.__op_digest;
	var opHmac = globalThis.__op_hmac;
	var bytesToB64 = globalThis.__bytesToB64;
	var b64ToBytes = globalThis.__b64ToBytes;

	function toBytes(data) {
		if (data instanceof ArrayBuffer) return new Uint8Array(data);
		if (ArrayBuffer.isView(data)) return new Uint8Array(data.buffer, data.byteOffset, data.byteLength);
		throw new TypeError('data must be an ArrayBuffer or view');
	}

	function toBuffer(bytes) {
		return bytes.buffer.slice(bytes.byteOffset, bytes.byteOffset + bytes.byteLength);
	}

	function hashName(algorithm) {
		var h = typeof algorithm === 'string' ? algorithm : (algorithm && (algorithm.hash && algorithm.hash.name || algorithm.hash) || algorithm.name);
		return String(h).toUpperCase();
	}

	var subtle = {
		digest: function(algorithm, data) {
			try {
				var algo = typeof algorithm === 'string' ? algorithm : algorithm.name;
				var parsed = JSON.parse(opDigest(String(algo).toUpperCase(), bytesToB64(toBytes(data))));
				if (parsed.error) return Promise.reject(new DOMException(parsed.error, 'NotSupportedError'));
				return Promise.resolve(toBuffer(b64ToBytes(parsed.ok)));
			} catch (e) {
				return Promise.reject(e);
			}
		},
		importKey: function(format, keyData, algorithm, extractable, usages) {
			if (format !== 'raw') {
				return Promise.reject(new DOMException('only raw key import is supported', 'NotSupportedError'));
			}
			var name = typeof algorithm === 'string' ? algorithm : algorithm.name;
			if (String(name).toUpperCase() !== 'HMAC') {
				return Promise.reject(new DOMException('only HMAC keys are supported', 'NotSupportedError'));
			}
			return Promise.resolve({
				type: 'secret',
				algorithm: { name: 'HMAC', hash: { name: hashName(algorithm) } },
				extractable: !!extractable,
				usages: usages || [],
				_raw: bytesToB64(toBytes(keyData)),
			});
		},
		sign: function(algorithm, key, data) {
			try {
				var parsed = JSON.parse(opHmac(key.algorithm.hash.name, key._raw, bytesToB64(toBytes(data))));
				if (parsed.error) return Promise.reject(new DOMException(parsed.error, 'NotSupportedError'));
				return Promise.resolve(toBuffer(b64ToBytes(parsed.ok)));
			} catch (e) {
				return Promise.reject(e);
			}
		},
		verify: function(algorithm, key, signature, data) {
			var sig = toBytes(signature);
			return subtle.sign(algorithm, key, data).then(function(expected) {
				var exp = new Uint8Array(expected);
				if (exp.length !== sig.length) return false;
				var diff = 0;
				for (var i = 0; i < exp.length; i++) diff |= exp[i] ^ sig[i];
				return diff === 0;
			});
		},
	};

	var crypto = {
		getRandomValues: function(array) {
			if (!ArrayBuffer.isView(array)) throw new TypeError('argument must be a typed array');
			if (array.byteLength > 65536) {
				throw new DOMException('requested ' + array.byteLength + ' bytes, max is 65536', 'QuotaExceededError');
			}
			var bytes = b64ToBytes(opRandom(array.byteLength));
			new Uint8Array(array.buffer, array.byteOffset, array.byteLength).set(bytes);
			return array;
		},
		randomUUID: function() { return opUUID(); },
		subtle: subtle,
	};

	Object.defineProperty(globalThis, 'crypto', {
		value: crypto,
		writable: false,
		configurable: true,
	});
})();
`

func registerCryptoOps(iso *v8.Isolate, ctx *v8.Context, _ *eventLoop) error {
	err := registerFunc(iso, ctx, "__op_random_bytes", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		n := 0
		if len(args) > 0 {
			n = int(args[0].Integer())
		}
		if n < 0 || n > 65536 {
			return jsString(iso, "")
		}
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return jsString(iso, "")
		}
		return jsString(iso, base64.StdEncoding.EncodeToString(buf))
	})
	if err != nil {
		return err
	}

	err = registerFunc(iso, ctx, "__op_random_uuid", func(info *v8.FunctionCallbackInfo) *v8.Value {
		return jsString(iso, uuid.NewString())
	})
	if err != nil {
		return err
	}

	err = registerFunc(iso, ctx, "__op_digest", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 2 {
			return jsString(iso, opErr("digest requires (algorithm, data)"))
		}
		newHash, ok := hashByName(args[0].String())
		if !ok {
			return jsString(iso, opErr("unsupported digest algorithm "+args[0].String()))
		}
		data, err := base64.StdEncoding.DecodeString(args[1].String())
		if err != nil {
			return jsString(iso, opErr("invalid data encoding"))
		}
		h := newHash()
		h.Write(data)
		return jsString(iso, opOK(base64.StdEncoding.EncodeToString(h.Sum(nil))))
	})
	if err != nil {
		return err
	}

	return registerFunc(iso, ctx, "__op_hmac", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < 3 {
			return jsString(iso, opErr("hmac requires (hash, key, data)"))
		}
		newHash, ok := hashByName(args[0].String())
		if !ok {
			return jsString(iso, opErr(fmt.Sprintf("unsupported hash %s", args[0].String())))
		}
		key, err1 := base64.StdEncoding.DecodeString(args[1].String())
		data, err2 := base64.StdEncoding.DecodeString(args[2].String())
		if err1 != nil || err2 != nil {
			return jsString(iso, opErr("invalid encoding"))
		}
		mac := hmac.New(newHash, key)
		mac.Write(data)
		return jsString(iso, opOK(base64.StdEncoding.EncodeToString(mac.Sum(nil))))
	})
}
