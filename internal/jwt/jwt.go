package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// AccessTokenType 只接受 access token，refresh token 由认证服务自己消费
const AccessTokenType = "access"

// Claims JWT 声明，与认证服务签发的格式一致
type Claims struct {
	UserID    int64  `json:"user_id"`
	DeviceID  string `json:"device_id"`
	Platform  string `json:"platform"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service 校验认证服务签发的 Token；聊天服务本身不登录用户
type Service struct {
	secretKey []byte
}

// NewService 创建 JWT 服务
func NewService(secretKey string) *Service {
	return &Service{secretKey: []byte(secretKey)}
}

// GenerateAccessToken 签发 access token（本地调试和测试使用）
func (s *Service) GenerateAccessToken(userID int64, deviceID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		DeviceID:  deviceID,
		TokenType: AccessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateAccessToken 验证 Access Token
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != AccessTokenType || claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
