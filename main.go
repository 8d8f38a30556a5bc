// Public domain.

package main

import "tcor/internal/tcprog"

func main() {
	tcprog.Main()
}
