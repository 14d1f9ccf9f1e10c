// Package main is the entry point for streambot, a chat bot that answers
// commands, delivers reminders and announces streams going live.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
