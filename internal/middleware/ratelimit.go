package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个 Gin 中间件，基于客户端 IP 地址进行速率限制。
// redisClient: 用于存储计数器的 Redis 客户端实例，必须提供。
// scope: 限流键的命名空间，不同通道（全局 / 认证 / 公共提交）使用独立计数。
// maxRequests: 在指定时间窗口内允许的最大请求数。
// window: 速率限制的时间窗口。
func RateLimit(redisClient *redis.Client, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	// 启动时检查依赖
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 使用客户端 IP 作为限流键的一部分
		// 注意：如果服务在反向代理后面，需要确保获取到真实的客户端 IP
		key := "ratelimit:" + scope + ":" + c.ClientIP()

		// 使用 Redis Pipeline 执行 INCR 和 EXPIRE 以提高原子性（减少竞争条件风险）
		// INCR 本身是原子的，但检查计数和设置过期之间有时间差
		// 更严格的原子性需要 Lua 脚本，Pipeline 是一个不错的折中
		pipe := redisClient.Pipeline()
		incrCmd := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, window)
		_, err := pipe.Exec(c.Request.Context())
		if err != nil {
			logrus.WithError(err).Error("RateLimit: Redis Pipeline failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Rate limiting error"})
			c.Abort()
			return
		}

		count, err := incrCmd.Result()
		if err != nil {
			logrus.WithError(err).Error("RateLimit: Failed to get INCR result after successful Exec")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Rate limiting error"})
			c.Abort()
			return
		}

		if count > int64(maxRequests) {
			logrus.WithFields(logrus.Fields{"scope": scope, "client_ip": c.ClientIP()}).
				Warn("RateLimit: Request rejected")
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests, please try again later"})
			c.Abort()
			return
		}

		c.Next()
	}
}
