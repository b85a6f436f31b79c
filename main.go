// Command sitecrawl crawls one website and reports word counts per page.
package main

import "github.com/JakeFAU/sitecrawl/cmd"

func main() {
	cmd.Execute()
}
