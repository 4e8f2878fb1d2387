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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"admin-assistant/internal/runtime/session"
)

var chatStream bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Reads one question per line. The conversation keeps its session state between
questions. Type /reset to start a new session and /exit to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatStream, "stream", true, "stream answers as they are generated")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc service) error {
		return chatLoop(ctx, svc, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	})
}

func chatLoop(ctx context.Context, svc service, in io.Reader, out, errOut io.Writer) error {
	fmt.Fprintf(errOut, "session: %s\n", currentSession())
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		msg := strings.TrimSpace(sc.Text())
		switch msg {
		case "":
			continue
		case "/exit", "/quit", "exit", "quit":
			return nil
		case "/reset":
			if err := svc.Flush(ctx, sessionID); err != nil {
				fmt.Fprintf(errOut, "重置失败: %v\n", err)
				continue
			}
			sessionID = session.NewSessionID()
			fmt.Fprintf(errOut, "session: %s\n", sessionID)
			continue
		}

		if chatStream {
			if err := streamAnswer(ctx, svc, newRequest(msg), out, errOut); err != nil {
				fmt.Fprintf(errOut, "发送失败: %v\n", err)
			}
		} else {
			ans, err := svc.Handle(ctx, newRequest(msg))
			if err != nil {
				fmt.Fprintf(errOut, "发送失败: %v\n", err)
				continue
			}
			fmt.Fprintln(out, ans.Text)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
