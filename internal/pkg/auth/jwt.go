// internal/pkg/auth/jwt.go
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleAdmin 是唯一拥有订单状态管理权限的角色
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var ErrInvalidToken = errors.New("invalid or expired access token")

// TokenPayload 是签进 access token 的业务身份信息。
type TokenPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type accessClaims struct {
	TokenPayload
	jwt.RegisteredClaims
}

// Verifier 校验客户端出示的 access token。
// 校验通过即信任其中的 claims，用户存续性不在本服务职责内。
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// SignAccessToken 签发一个 access token，测试和内部工具使用。
func (v *Verifier) SignAccessToken(payload TokenPayload, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		TokenPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// VerifyAccessToken 验证签名和有效期，返回 token 中携带的身份。
func (v *Verifier) VerifyAccessToken(tokenString string) (*TokenPayload, error) {
	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名，防止算法替换攻击
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims.TokenPayload, nil
}
