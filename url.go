package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	whatwg "github.com/nlnwa/whatwg-url/url"
	v8 "github.com/tommie/v8go"
)

// parsedURL is the shape handed to the JS URL class.
type parsedURL struct {
	Href     string `json:"href"`
	Protocol string `json:"protocol"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
	Origin   string `json:"origin"`
	Error    string `json:"error,omitempty"`
}

// parseURL runs the WHATWG URL parser on the host side; the JS class is a
// thin wrapper over the result.
func parseURL(input, base string) parsedURL {
	var u *whatwg.Url
	var err error
	if base != "" {
		u, err = whatwg.ParseRef(base, input)
	} else {
		u, err = whatwg.Parse(input)
	}
	if err != nil {
		return parsedURL{Error: fmt.Sprintf("invalid URL: %s", input)}
	}

	out := parsedURL{
		Href:     u.Href(false),
		Protocol: u.Protocol(),
		Username: u.Username(),
		Password: u.Password(),
		Host:     u.Host(),
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Pathname: u.Pathname(),
		Search:   u.Search(),
		Hash:     u.Hash(),
	}
	switch strings.TrimSuffix(out.Protocol, ":") {
	case "http", "https", "ws", "wss", "ftp":
		out.Origin = out.Protocol + "//" + out.Host
	default:
		out.Origin = "null"
	}
	return out
}

// urlJS installs URL, URLSearchParams, and URLPattern. Parsing goes
// through the host-side WHATWG parser; query handling is pure JS.
const urlJS = `
(function() {
	var opParse = globalThis.__op_url_parse;

	class URLSearchParams {
		constructor(init) {
			this._pairs = [];
			if (init == null) return;
			if (init instanceof URLSearchParams) {
				this._pairs = init._pairs.slice();
			} else if (Array.isArray(init)) {
				for (var i = 0; i < init.length; i++) this._pairs.push([String(init[i][0]), String(init[i][1])]);
			} else if (typeof init === 'object') {
				var keys = Object.keys(init);
				for (var j = 0; j < keys.length; j++) this._pairs.push([keys[j], String(init[keys[j]])]);
			} else {
				var s = String(init);
				if (s.startsWith('?')) s = s.slice(1);
				if (s.length > 0) {
					var parts = s.split('&');
					for (var k = 0; k < parts.length; k++) {
						if (!parts[k]) continue;
						var eq = parts[k].indexOf('=');
						if (eq < 0) this._pairs.push([decodeURIComponent(parts[k].replace(/\+/g, ' ')), '']);
						else this._pairs.push([
							decodeURIComponent(parts[k].slice(0, eq).replace(/\+/g, ' ')),
							decodeURIComponent(parts[k].slice(eq + 1).replace(/\+/g, ' ')),
						]);
					}
				}
			}
		}
		append(name, value) { this._pairs.push([String(name), String(value)]); this._sync(); }
		delete(name) {
			this._pairs = this._pairs.filter(function(p) { return p[0] !== String(name); });
			this._sync();
		}
		get(name) {
			for (var i = 0; i < this._pairs.length; i++) {
				if (this._pairs[i][0] === String(name)) return this._pairs[i][1];
			}
			return null;
		}
		getAll(name) {
			return this._pairs.filter(function(p) { return p[0] === String(name); })
				.map(function(p) { return p[1]; });
		}
		has(name) { return this.get(name) !== null; }
		set(name, value) {
			var found = false;
			var out = [];
			for (var i = 0; i < this._pairs.length; i++) {
				if (this._pairs[i][0] === String(name)) {
					if (!found) { out.push([String(name), String(value)]); found = true; }
				} else {
					out.push(this._pairs[i]);
				}
			}
			if (!found) out.push([String(name), String(value)]);
			this._pairs = out;
			this._sync();
		}
		sort() {
			this._pairs.sort(function(a, b) { return a[0] < b[0] ? -1 : a[0] > b[0] ? 1 : 0; });
			this._sync();
		}
		forEach(cb, thisArg) {
			for (var i = 0; i < this._pairs.length; i++) {
				cb.call(thisArg, this._pairs[i][1], this._pairs[i][0], this);
			}
		}
		keys() { return this._pairs.map(function(p) { return p[0]; })[Symbol.iterator](); }
		values() { return this._pairs.map(function(p) { return p[1]; })[Symbol.iterator](); }
		entries() { return this._pairs.map(function(p) { return [p[0], p[1]]; })[Symbol.iterator](); }
		[Symbol.iterator]() { return this.entries(); }
		get size() { return this._pairs.length; }
		toString() {
			return this._pairs.map(function(p) {
				return encodeURIComponent(p[0]) + '=' + encodeURIComponent(p[1]);
			}).join('&');
		}
		_sync() {
			if (this._url) {
				var q = this.toString();
				this._url.search = q ? '?' + q : '';
				this._url.href = this._url._rebuild();
			}
		}
	}

	class URL {
		constructor(input, base) {
			var parsed = JSON.parse(opParse(String(input), base === undefined ? '' : String(base)));
			if (parsed.error) throw new TypeError(parsed.error);
			this.href = parsed.href;
			this.protocol = parsed.protocol;
			this.username = parsed.username;
			this.password = parsed.password;
			this.host = parsed.host;
			this.hostname = parsed.hostname;
			this.port = parsed.port;
			this.pathname = parsed.pathname;
			this.search = parsed.search;
			this.hash = parsed.hash;
			this.origin = parsed.origin;
			this.searchParams = new URLSearchParams(this.search);
			this.searchParams._url = this;
		}
		toString() { return this.href; }
		toJSON() { return this.href; }
		_rebuild() {
			return this.protocol + '//' + this.host + this.pathname + this.search + this.hash;
		}
		static canParse(input, base) {
			try { new URL(input, base); return true; } catch (e) { return false; }
		}
	}

	// URLPattern supports the common subset: exact segments, :name groups,
	// and * wildcards on pathname plus literal protocol/hostname matching.
	class URLPattern {
		constructor(init, baseURL) {
			if (typeof init === 'string') init = { pathname: init };
			init = init || {};
			this.protocol = init.protocol || '*';
			this.hostname = init.hostname || '*';
			this.pathname = init.pathname || '*';
			this._groups = [];
			this._re = this._compile(this.pathname);
		}
		_compile(pattern) {
			var groups = this._groups;
			var re = pattern.replace(/[.+?^$()|[\]\\]/g, '\\$&')
				.replace(/:(\w+)/g, function(_, name) { groups.push(name); return '([^/]+)'; })
				.replace(/\*/g, '.*');
			return new RegExp('^' + re + '$');
		}
		_part(pattern, value) {
			if (pattern === '*') return true;
			return pattern === value;
		}
		test(input, baseURL) {
			return this.exec(input, baseURL) !== null;
		}
		exec(input, baseURL) {
			var url;
			try { url = input instanceof URL ? input : new URL(String(input), baseURL); }
			catch (e) { return null; }
			if (!this._part(this.protocol, url.protocol.replace(':', ''))) return null;
			if (!this._part(this.hostname, url.hostname)) return null;
			var m = this._re.exec(url.pathname);
			if (!m) return null;
			var groups = {};
			for (var i = 0; i < this._groups.length; i++) groups[this._groups[i]] = m[i + 1];
			return {
				inputs: [String(input)],
				pathname: { input: url.pathname, groups: groups },
				hostname: { input: url.hostname, groups: {} },
				protocol: { input: url.protocol.replace(':', ''), groups: {} },
			};
		}
	}

	globalThis.URL = URL;
	globalThis.URLSearchParams = URLSearchParams;
	globalThis.URLPattern = URLPattern;
})();
`

func registerURLOps(iso *v8.Isolate, ctx *v8.Context, _ *eventLoop) error {
	return registerFunc(iso, ctx, "__op_url_parse", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		input, base := "", ""
		if len(args) > 0 {
			input = args[0].String()
		}
		if len(args) > 1 {
			base = args[1].String()
		}
		data, err := json.Marshal(parseURL(input, base))
		if err != nil {
			return jsString(iso, `{"error":"url parse failed"}`)
		}
		return jsString(iso, string(data))
	})
}
