package main

import "github.com/thirdweb-dev/extractor/cmd"

func main() {
	cmd.Execute()
}
