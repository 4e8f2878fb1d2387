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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"admin-assistant/internal/agent/orchestrator"
	"admin-assistant/internal/app"
	"admin-assistant/internal/runtime/session"
	"admin-assistant/pkg/config"
)

const defaultConfigPath = "configs/assistant.yaml"

var (
	configPath string
	sessionID  string
	langFlag   string
	modelName  string
	noCache    bool
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "French administrative procedures assistant",
	Long: `Answers questions about French administrative procedures (residence permits,
identity documents, daily life) from the configured knowledge base.
Replies follow the user's language: French, English or Vietnamese.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default $ASSISTANT_CONFIG or "+defaultConfigPath+")")
	pf.StringVarP(&sessionID, "session", "s", "", "session id; a new one is generated when empty")
	pf.StringVarP(&langFlag, "lang", "l", "", "reply language (fr, en, vi); detected from the query when empty")
	pf.StringVar(&modelName, "model", "", "override the generation model for this run")
	pf.BoolVar(&noCache, "no-cache", false, "bypass the response cache")
}

// service 命令所需的能力，测试中替换为 fake
type service interface {
	Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Answer, error)
	Stream(ctx context.Context, req orchestrator.Request) (<-chan orchestrator.Event, error)
	Flush(ctx context.Context, sessionID string) error
	Close(ctx context.Context) error
}

type bootstrapService struct {
	*app.Bootstrap
}

func (s bootstrapService) Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Answer, error) {
	return s.Orchestrator.Handle(ctx, req)
}

func (s bootstrapService) Stream(ctx context.Context, req orchestrator.Request) (<-chan orchestrator.Event, error) {
	return s.Orchestrator.Stream(ctx, req)
}

var openService = func(ctx context.Context, cfg *config.Config) (service, error) {
	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return bootstrapService{b}, nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("ASSISTANT_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// withService 加载配置、启动指标端点并打开服务；fn 返回后释放资源
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopMetrics := startMetrics(cfg.Monitoring.Prometheus, cmd.ErrOrStderr())
	defer stopMetrics()

	svc, err := openService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	defer func() { _ = svc.Close(context.Background()) }()
	return fn(ctx, svc)
}

func currentSession() string {
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}
	return sessionID
}

func newRequest(query string) orchestrator.Request {
	return orchestrator.Request{
		SessionID:   currentSession(),
		Query:       query,
		Language:    langFlag,
		Model:       modelName,
		BypassCache: noCache,
	}
}

var errEmptyQuery = errors.New("query is empty")
