package testing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	jwtkit "github.com/tuan304201/generate-license-key/jwt"
)

// TestIssuer runs an HTTP server serving JWKS at /.well-known/jwks.json and
// signs admin tokens that validate against it. Gateway auth tests point
// their verifier at URL().
type TestIssuer struct {
	server   *httptest.Server
	signer   *jwtkit.RSASigner
	audience string
}

// NewTestIssuer creates a test issuer for the given audience. Call Close
// when done.
func NewTestIssuer(audience string) *TestIssuer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	ti := &TestIssuer{signer: signer, audience: audience}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", ti.handleJWKS)
	ti.server = httptest.NewServer(mux)
	return ti
}

// URL returns the issuer base URL.
func (ti *TestIssuer) URL() string { return ti.server.URL }

// JWKSURL returns the JWKS document URL for verifier configuration.
func (ti *TestIssuer) JWKSURL() string { return ti.server.URL + "/.well-known/jwks.json" }

// Audience returns the configured audience claim.
func (ti *TestIssuer) Audience() string { return ti.audience }

// Close shuts down the server.
func (ti *TestIssuer) Close() { ti.server.Close() }

func (ti *TestIssuer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	k := jwtkit.RSAPublicToJWK(ti.signer.PublicKey(), ti.signer.KID(), ti.signer.Algorithm())
	jwtkit.ServeJWKS(w, r, jwtkit.JWKS{Keys: []jwtkit.JWK{k}})
}

// CreateToken signs an admin token for the subject, valid for an hour.
func (ti *TestIssuer) CreateToken(subject string) string {
	return ti.CreateTokenWithExpiry(subject, time.Now().Add(time.Hour))
}

// CreateTokenWithExpiry signs a token with a custom expiry. Pass a past time
// to test expiry handling.
func (ti *TestIssuer) CreateTokenWithExpiry(subject string, expiry time.Time) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": ti.URL(),
		"aud": ti.audience,
		"exp": expiry.Unix(),
		"iat": now.Unix(),
	}
	token, err := ti.signer.Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}
