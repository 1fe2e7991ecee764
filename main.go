package main

import "github.com/studyplanner/planner/cmd"

func main() {
	cmd.Execute()
}
