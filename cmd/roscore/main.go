// Command roscore runs a standalone ROS master and parameter server.
package main

func main() {
	execute()
}
