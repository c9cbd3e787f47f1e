package main

import "github.com/shaw465/wnacg-downloader/cmd"

func main() {
	cmd.Execute()
}
