package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ErrNoToken request carries neither the token cookie nor a bearer header
var ErrNoToken = errors.New("no token in request")

// ReaderClaims identity of a signed in reader, the subject is the user ID and
// the token ID is what sign out revokes
type ReaderClaims struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`

	jwt.StandardClaims
}

// UserID .
func (rc *ReaderClaims) UserID() string {
	return rc.Subject
}

// TimeRemaining remaining time before the token get expired
func (rc *ReaderClaims) TimeRemaining() time.Duration {
	left := time.Until(time.Unix(rc.ExpiresAt, 0))
	if left < 0 {
		return 0
	}
	return left
}

// JWTUtil issues and checks reader tokens carried in a cookie
type JWTUtil struct {
	secret    []byte
	tokenName string
	timeout   time.Duration
	method    jwt.SigningMethod
	// Issuer set on issued tokens and required on validated ones
	Issuer string
	// Secure cookies are only sent over https
	Secure bool
}

// NewJWTUtil create a JWTUtil instance, only HMAC methods are supported
func NewJWTUtil(method, secret, tokenName string, timeout time.Duration) *JWTUtil {
	signMethod := jwt.SigningMethodHS256
	if method == "HS512" {
		signMethod = jwt.SigningMethodHS512
	}
	return &JWTUtil{
		method:    signMethod,
		secret:    []byte(secret),
		tokenName: tokenName,
		timeout:   timeout,
		Issuer:    "speedread",
	}
}

// Sign .
func (ju *JWTUtil) Sign(claims *ReaderClaims) (string, error) {
	return jwt.NewWithClaims(ju.method, claims).SignedString(ju.secret)
}

// Validate parses tokenStr, checking signature, method, expiry and issuer
func (ju *JWTUtil) Validate(tokenStr string) (*ReaderClaims, error) {
	claims := new(ReaderClaims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != ju.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return ju.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !claims.VerifyIssuer(ju.Issuer, true) {
		return nil, fmt.Errorf("unexpected issuer: %q", claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a fresh token for the reader
func (ju *JWTUtil) IssueToken(userID, username, email string) (string, error) {
	now := time.Now()
	return ju.Sign(&ReaderClaims{
		Username: username,
		Email:    email,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   userID,
			Issuer:    ju.Issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ju.timeout).Unix(),
		},
	})
}

// Extend pushes the expiry of claims a full timeout from now, the token ID is kept
func (ju *JWTUtil) Extend(claims *ReaderClaims) *ReaderClaims {
	claims.ExpiresAt = time.Now().Add(ju.timeout).Unix()
	return claims
}

func (ju *JWTUtil) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     ju.tokenName,
		Value:    value,
		HttpOnly: true,
		Secure:   ju.Secure,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
}

// SetClientToken set token in client cookie
func (ju *JWTUtil) SetClientToken(c echo.Context, tokenStr string) {
	c.SetCookie(ju.cookie(tokenStr, time.Now().Add(ju.timeout)))
}

// ClearClientToken .
func (ju *JWTUtil) ClearClientToken(c echo.Context) {
	c.SetCookie(ju.cookie("", time.Unix(0, 0)))
}

// SetContextToken .
func (ju *JWTUtil) SetContextToken(c echo.Context, claims *ReaderClaims) {
	c.Set(ju.tokenName, claims)
}

// GetContextToken claims stored by SetContextToken, nil on unauthenticated routes
func (ju *JWTUtil) GetContextToken(c echo.Context) *ReaderClaims {
	v, _ := c.Get(ju.tokenName).(*ReaderClaims)
	return v
}

// ExtractToken reads the token cookie, falling back to an
// "Authorization: Bearer" header for non browser clients
func (ju *JWTUtil) ExtractToken(c echo.Context) (string, error) {
	if cookie, err := c.Cookie(ju.tokenName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := strings.TrimPrefix(header, "Bearer "); token != header && token != "" {
		return token, nil
	}
	return "", ErrNoToken
}
