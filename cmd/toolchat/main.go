package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nextrun/augment/internal/server"
	"github.com/nextrun/augment/internal/session"
	"github.com/nextrun/augment/pkg/llm"
	logpkg "github.com/nextrun/augment/pkg/log"
)

var (
	configFile = flag.String("config", "configs/config.toml", "Path to config file")
	question   = flag.String("q", "", "Question to ask")
)

func init() {
	flag.Parse()
}

func main() {
	if *question == "" {
		fmt.Fprintln(os.Stderr, "usage: toolchat -q <question> [-config <path>]")
		os.Exit(2)
	}

	conf, err := server.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logpkg.Init(conf.Log); err != nil {
		log.Fatalf("failed to init log: %v", err)
	}

	client, err := session.NewClient(conf.Tools)
	if err != nil {
		log.Fatalf("failed to create tool client: %v", err)
	}

	sess := session.NewSession(client, llm.New(conf.OpenAI))

	result, err := sess.Run(context.Background(), *question, "")
	if err != nil {
		log.Fatalf("session failed: %v", err)
	}

	fmt.Println(result.Response)

	if len(result.ToolResults) > 0 {
		fmt.Println("\n--- tool calls ---")
		for _, tr := range result.ToolResults {
			data, _ := json.Marshal(tr.Result)
			fmt.Printf("%s(%v) -> %s\n", tr.Name, tr.Arguments, data)
		}
	}
}
