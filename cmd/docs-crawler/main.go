// Command docs-crawler is the CLI entrypoint for the archival crawler.
package main

import (
	cmd "github.com/archivecrawl/crawler/internal/cli"
)

func main() {
	cmd.Execute()
}
