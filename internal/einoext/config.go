// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package einoext

import (
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"admin-assistant/pkg/config"
)

const (
	defaultRedisAddr  = "localhost:6379"
	redisDialTimeout  = 5 * time.Second
	redisReadTimeout  = 3 * time.Second
	redisWriteTimeout = 3 * time.Second
)

// RedisOptions 知识库 Redis Stack 连接参数；FT.SEARCH 结果解析需要 RESP2
func RedisOptions(cfg config.VectorConfig) *redis.Options {
	opts := &redis.Options{
		Addr:          cfg.Addr,
		Password:      cfg.Password,
		DialTimeout:   redisDialTimeout,
		ReadTimeout:   redisReadTimeout,
		WriteTimeout:  redisWriteTimeout,
		Protocol:      2,
		UnstableResp3: true,
	}
	if opts.Addr == "" {
		opts.Addr = defaultRedisAddr
	}
	if db, err := strconv.Atoi(cfg.DB); err == nil && db >= 0 {
		opts.DB = db
	}
	return opts
}
