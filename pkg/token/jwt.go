// Package token 提供了用于验证 JSON Web Tokens (JWT) 的功能。
// 本服务不签发 token：签章密钥与算法与签发方（Node.js 后端）共用，
// 这里只负责验证并从 payload 中解析使用者识别。
package token

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired 表示 token 已超过有效期。
var ErrTokenExpired = errors.New("Token 已過期")

// ErrTokenInvalid 表示 token 无法通过验证。
var ErrTokenInvalid = errors.New("Token 無效")

// identityClaims 是解析使用者识别时的字段优先顺序，取第一个非空值。
var identityClaims = []string{"user_id", "id", "email", "username"}

// JWTManager 负责管理 JWT 的验证。
type JWTManager struct {
	secretKey []byte // secretKey 用于验证 token 签名的密钥
	algorithm string // algorithm 签发方使用的算法名，如 HS256
}

// NewJWTManager 创建一个新的 JWTManager 实例。
func NewJWTManager(secret, algorithm string) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		algorithm: algorithm,
	}
}

// VerifyToken 验证给定的 token 字符串并返回其 claims。
// token 过期返回 ErrTokenExpired，其余验证失败返回 ErrTokenInvalid。
func (m *JWTManager) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		// 签名方法必须与配置一致，防止算法替换攻击
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		if t.Method.Alg() != m.algorithm {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ResolveIdentity 按 user_id > id > email > username 的优先顺序从 claims
// 中解析使用者识别，返回第一个非空值。没有任何可用字段时返回空字符串，
// 调用方应将这种请求视为无法认证。
func ResolveIdentity(claims jwt.MapClaims) string {
	for _, key := range identityClaims {
		v, ok := claims[key]
		if !ok {
			continue
		}
		if s := stringifyClaim(v); s != "" {
			return s
		}
	}
	return ""
}

// stringifyClaim 将 claim 值转换为字符串。JSON 数字在 MapClaims 中是
// float64，整数值按整数格式化（id: 42 -> "42"）。数字 0 视同缺失，
// 让优先顺序落到下一个字段。
func stringifyClaim(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == 0 {
			return ""
		}
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
