// Command stgrag ingests clinical guideline documents into a local SQLite
// index and queries it.
package main

func main() {
	Execute()
}
