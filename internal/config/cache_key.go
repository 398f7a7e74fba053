package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AdminSessionKey returns the key holding one live admin JWT session.
func (r *CacheKeyStruct) AdminSessionKey(adminID int64, jti string) string {
	return fmt.Sprintf("admin:%d:session:%s", adminID, jti)
}

// AdminSessionPattern matches every live session of an admin.
func (r *CacheKeyStruct) AdminSessionPattern(adminID int64) string {
	return fmt.Sprintf("admin:%d:session:*", adminID)
}

// DashboardChannel returns the Redis PubSub channel feeding the admin realtime view.
func (r *CacheKeyStruct) DashboardChannel() string {
	return "quiz:dashboard:events"
}

var CacheKey = NewCacheKeyStruct()
