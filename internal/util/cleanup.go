package util

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SetupInterruptHandler stops the batch gracefully on the first interrupt
// (the in-flight download finishes) and exits hard on the second.
func SetupInterruptHandler(stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Println("\nInterrupt received. Stopping after the current download...")
		stop()

		<-sig
		fmt.Println("\nExiting due to interrupt.")
		os.Exit(1)
	}()
}

// RemoveIfEmpty drops the output folder when a cancelled batch left
// nothing behind.
func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}
