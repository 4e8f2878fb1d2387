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

package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"admin-assistant/pkg/log"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS agent_sessions (
	session_id TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore 使用 agent_sessions 表，每个会话一行，UPSERT 覆盖
type PostgresStore struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *log.Logger
}

// NewPostgresStore 连接数据库并确保表存在；ttl > 0 时过期记录在读取时视为不存在
func NewPostgresStore(ctx context.Context, dsn string, ttl time.Duration, logger *log.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, ttl: ttl, logger: log.OrDefault(logger)}, nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*AgentState, error) {
	var data []byte
	var updated time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT state, updated_at FROM agent_sessions WHERE session_id = $1`, sessionID).Scan(&data, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewAgentState(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 && time.Since(updated) > s.ttl {
		return NewAgentState(sessionID), nil
	}
	state, err := Decode(data, sessionID)
	if err != nil {
		s.logger.Warn("discarding unreadable agent state", "session_id", sessionID, "error", err)
		return NewAgentState(sessionID), nil
	}
	return state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *AgentState) error {
	if state == nil {
		return nil
	}
	data, err := Encode(state)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agent_sessions (session_id, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		state.SessionID, data)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM agent_sessions WHERE session_id = $1`, sessionID)
	return err
}

// Close 关闭连接池
func (s *PostgresStore) Close() { s.pool.Close() }
