package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		engine, err := a.engine(cmd.Context())
		if err != nil {
			return err
		}

		spinner := getSpinner("🔍 Searching knowledge base...")
		answer, err := engine.Answer(cmd.Context(), strings.Join(args, " "))
		spinner.Finish()
		fmt.Print("\r")
		if err != nil {
			return err
		}

		fmt.Println(answer)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		engine, err := a.engine(ctx)
		if err != nil {
			return err
		}

		// Interactive chat loop with colored output
		color.Cyan("\nAsk about listings or community guidelines (type 'exit' to quit)")

		scanner := bufio.NewScanner(os.Stdin)
		userPrompt := color.New(color.FgGreen).PrintfFunc()
		assistantPrompt := color.New(color.FgCyan).PrintfFunc()

		for {
			userPrompt("\nYou: ")
			if !scanner.Scan() {
				break
			}

			q := strings.TrimSpace(scanner.Text())
			if strings.ToLower(q) == "exit" {
				break
			}
			if q == "" {
				continue
			}

			spinner := getSpinner("🤖 Generating response...")
			answer, err := engine.Answer(ctx, q)
			spinner.Finish()
			fmt.Print("\r")

			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			assistantPrompt("Assistant: %s\n", answer)
		}

		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(queryCmd, chatCmd)
}
