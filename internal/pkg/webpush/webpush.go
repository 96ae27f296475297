package webpush

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/hkdf"
)

// Web Push with VAPID (RFC 8292) and aes128gcm payload encryption (RFC 8291).

var (
	// ErrEndpointGone means the push service reported the subscription dead
	// (404/410). Callers should schedule removal, never retry.
	ErrEndpointGone = errors.New("push endpoint gone")

	b64 = base64.RawURLEncoding
)

const recordSize = 4096

// VAPID holds the server keypair used to self-identify to push services.
type VAPID struct {
	key          *ecdsa.PrivateKey
	publicKeyB64 string
	subject      string
}

// NewVAPID builds a VAPID signer from a base64url raw private key (the
// 32-byte EC256 scalar) and a contact subject.
func NewVAPID(privateKeyB64, subject string) (*VAPID, error) {
	raw, err := b64.DecodeString(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid VAPID private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid VAPID private key length %d", len(raw))
	}

	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256()},
		D:         new(big.Int).SetBytes(raw),
	}
	priv.PublicKey.X, priv.PublicKey.Y = priv.Curve.ScalarBaseMult(raw)

	pub := elliptic.Marshal(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)
	return &VAPID{
		key:          priv,
		publicKeyB64: b64.EncodeToString(pub),
		subject:      subject,
	}, nil
}

// GenerateVAPID creates a fresh keypair, returned base64url raw encoded.
func GenerateVAPID() (privateKeyB64, publicKeyB64 string, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}
	raw := make([]byte, 32)
	priv.D.FillBytes(raw)
	pub := elliptic.Marshal(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)
	return b64.EncodeToString(raw), b64.EncodeToString(pub), nil
}

// PublicKey returns the base64url raw uncompressed public key, the value
// clients pass as the applicationServerKey.
func (v *VAPID) PublicKey() string {
	return v.publicKeyB64
}

// AuthHeader builds the Authorization header for a push endpoint:
// "vapid t=<ES256 JWT>, k=<public key>". The JWT audience is the endpoint
// origin and it expires in an hour.
func (v *VAPID) AuthHeader(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid push endpoint %q", endpoint)
	}

	builder := jwt.NewBuilder().
		Audience([]string{u.Scheme + "://" + u.Host}).
		Expiration(time.Now().Add(time.Hour))
	if v.subject != "" {
		builder = builder.Subject(v.subject)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build VAPID token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.ES256, v.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign VAPID token: %w", err)
	}

	return "vapid t=" + string(signed) + ", k=" + v.publicKeyB64, nil
}

// Client dispatches encrypted Web Push messages.
type Client struct {
	vapid *VAPID
	http  *http.Client
	ttl   int
	log   *slog.Logger
}

// NewClient creates a push client. httpClient may be nil.
func NewClient(vapid *VAPID, httpClient *http.Client, ttlSeconds int, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{vapid: vapid, http: httpClient, ttl: ttlSeconds, log: log}
}

// Send encrypts payload for the subscription keys and POSTs it to the
// endpoint. Returns ErrEndpointGone when the push service reports the
// subscription invalid.
func (c *Client) Send(ctx context.Context, endpoint, p256dhB64, authB64 string, payload []byte) error {
	body, err := encrypt(p256dhB64, authB64, payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}

	authHeader, err := c.vapid.AuthHeader(endpoint)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("TTL", strconv.Itoa(c.ttl))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push dispatch failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrEndpointGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
}

// encrypt implements the aes128gcm content encoding: ECDH against the
// client's p256dh key, HKDF key derivation salted with the auth secret, and
// a single record carrying the whole payload.
func encrypt(p256dhB64, authB64 string, plaintext []byte) ([]byte, error) {
	uaPubRaw, err := decodePossiblyPadded(p256dhB64)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh key: %w", err)
	}
	auth, err := decodePossiblyPadded(authB64)
	if err != nil {
		return nil, fmt.Errorf("invalid auth secret: %w", err)
	}

	curve := ecdh.P256()
	uaPub, err := curve.NewPublicKey(uaPubRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh key: %w", err)
	}
	asKey, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	shared, err := asKey.ECDH(uaPub)
	if err != nil {
		return nil, err
	}
	asPub := asKey.PublicKey().Bytes()

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	cek, nonce, err := deriveKeys(shared, auth, salt, uaPubRaw, asPub)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	// Last (only) record: padding delimiter 0x02
	record := append(append([]byte{}, plaintext...), 0x02)
	ciphertext := gcm.Seal(nil, nonce, record, nil)

	// Header: salt | rs | idlen | keyid(as public key)
	header := make([]byte, 0, 16+4+1+len(asPub))
	header = append(header, salt...)
	header = binary.BigEndian.AppendUint32(header, recordSize)
	header = append(header, byte(len(asPub)))
	header = append(header, asPub...)

	return append(header, ciphertext...), nil
}

func deriveKeys(shared, auth, salt, uaPub, asPub []byte) (cek, nonce []byte, err error) {
	// IKM = HKDF(auth, ecdh_secret, "WebPush: info" || 0x00 || ua_public || as_public)
	keyInfo := append([]byte("WebPush: info\x00"), uaPub...)
	keyInfo = append(keyInfo, asPub...)
	prk := hkdf.Extract(sha256.New, shared, auth)
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, keyInfo), ikm); err != nil {
		return nil, nil, err
	}

	prk2 := hkdf.Extract(sha256.New, ikm, salt)
	cek = make([]byte, 16)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk2, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, 12)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk2, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, nil, err
	}
	return cek, nonce, nil
}

// decodePossiblyPadded tolerates base64url values with stray padding, which
// some clients incorrectly include.
func decodePossiblyPadded(s string) ([]byte, error) {
	trimmed := s
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return b64.DecodeString(trimmed)
}
