package twitter

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// signer produces RFC 5849 HMAC-SHA1 Authorization headers.
type signer struct {
	consumerKey    string
	consumerSecret string
	now            func() time.Time
	nonce          func() string
}

func newSigner(consumerKey, consumerSecret string) *signer {
	return &signer{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		now:            time.Now,
		nonce:          randomNonce,
	}
}

func randomNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// percentEncode is the RFC 3986 encoding OAuth 1.0a requires: only
// unreserved characters pass through.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteString("%" + strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return b.String()
}

// baseString is METHOD&url&params with every component percent-encoded.
// params must hold both the oauth_ parameters and the request parameters.
func baseString(method, baseURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	encoded := make(map[string]string, len(params))
	for k, v := range params {
		ek := percentEncode(k)
		keys = append(keys, ek)
		encoded[ek] = percentEncode(v)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + encoded[k]
	}

	return strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(pairs, "&"))
}

func signature(base, consumerSecret, tokenSecret string) string {
	key := percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// authorize returns the Authorization header for a request. extra holds
// oauth_ parameters such as oauth_callback or oauth_verifier; form holds the
// query and form body parameters, which are signed but not put in the header.
func (s *signer) authorize(method, rawURL, token, tokenSecret string, extra map[string]string, form url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	oauth := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauth["oauth_token"] = token
	}
	for k, v := range extra {
		oauth[k] = v
	}

	all := make(map[string]string, len(oauth)+len(form))
	for k, v := range oauth {
		all[k] = v
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			all[k] = v[0]
		}
	}
	for k, v := range form {
		if len(v) > 0 {
			all[k] = v[0]
		}
	}

	base := u.Scheme + "://" + strings.ToLower(u.Host) + u.EscapedPath()
	oauth["oauth_signature"] = signature(baseString(method, base, all), s.consumerSecret, tokenSecret)

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = percentEncode(k) + `="` + percentEncode(oauth[k]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}
