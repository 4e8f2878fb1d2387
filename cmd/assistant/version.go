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
	"github.com/spf13/cobra"

	"admin-assistant/internal/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("admin-assistant version %s\n", app.Version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a := cfg.Assistant
		cmd.Printf("assistant.default_language=%s\n", a.DefaultLanguage)
		cmd.Printf("assistant.working_language=%s\n", a.WorkingLanguage)
		cmd.Printf("assistant.turn_timeout=%s\n", a.TurnTimeout)
		cmd.Printf("assistant.cache_ttl=%s\n", a.CacheTTL)
		cmd.Printf("assistant.injection_guard=%t\n", *a.InjectionGuard)
		cmd.Printf("model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
		cmd.Printf("model.defaults.guardrail=%s\n", cfg.Model.Defaults.Guardrail)
		cmd.Printf("model.defaults.embedding=%s\n", cfg.Model.Defaults.Embedding)
		cmd.Printf("storage.session.type=%s\n", cfg.Storage.Session.Type)
		cmd.Printf("storage.cache.type=%s\n", cfg.Storage.Cache.Type)
		cmd.Printf("storage.vector.type=%s\n", cfg.Storage.Vector.Type)
		for _, c := range cfg.Storage.Knowledge.Collections {
			cmd.Printf("storage.knowledge.collection=%s (%s)\n", c.Name, c.Domain)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd, configCmd)
}
