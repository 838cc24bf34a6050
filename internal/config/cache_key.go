package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestConfigKey returns the cache key for a test's configuration.
func (r *CacheKeyStruct) TestConfigKey(testID string) string {
	return fmt.Sprintf("test:%s:config", testID)
}

// TestMonitorChannel returns the Redis PubSub channel name for a test's
// live session monitor.
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

var CacheKey = NewCacheKeyStruct()
