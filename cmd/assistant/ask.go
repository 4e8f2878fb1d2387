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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"admin-assistant/internal/agent/orchestrator"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var streamCmd = &cobra.Command{
	Use:   "stream [question]",
	Short: "Ask a single question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStream,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
	rootCmd.AddCommand(askCmd, streamCmd)
}

// askOutput --json 输出
type askOutput struct {
	SessionID  string `json:"session_id"`
	Answer     string `json:"answer"`
	Language   string `json:"language"`
	Outcome    string `json:"outcome"`
	Lane       string `json:"lane"`
	Intent     string `json:"intent,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errEmptyQuery
	}
	return withService(cmd, func(ctx context.Context, svc service) error {
		ans, err := svc.Handle(ctx, newRequest(query))
		if err != nil {
			return err
		}
		if askJSON {
			data, err := json.MarshalIndent(askOutput{
				SessionID:  ans.SessionID,
				Answer:     ans.Text,
				Language:   ans.Language,
				Outcome:    string(ans.Outcome),
				Lane:       ans.Lane,
				Intent:     string(ans.Intent),
				DurationMS: ans.Duration.Milliseconds(),
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal answer: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Println(ans.Text)
		return nil
	})
}

func runStream(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errEmptyQuery
	}
	return withService(cmd, func(ctx context.Context, svc service) error {
		return streamAnswer(ctx, svc, newRequest(query), cmd.OutOrStdout(), cmd.ErrOrStderr())
	})
}

// streamAnswer 逐事件输出：状态写 errOut，文本写 out；replace 时另起一行输出整段替换
func streamAnswer(ctx context.Context, svc service, req orchestrator.Request, out, errOut io.Writer) error {
	events, err := svc.Stream(ctx, req)
	if err != nil {
		return err
	}
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventStatus:
			fmt.Fprintf(errOut, "[%s]\n", ev.Content)
		case orchestrator.EventToken:
			fmt.Fprint(out, ev.Content)
		case orchestrator.EventReplace:
			fmt.Fprintf(out, "\n\n%s", ev.Content)
		case orchestrator.EventDone:
			fmt.Fprintln(out)
		}
	}
	return nil
}
