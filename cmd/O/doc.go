/*
The program O sends requests to the OmniSharp server run by
omnisharp-proxy.

	Usage: O [flags] <sub-command> [args...]

List of sub-commands:

	events [names...]
		Print server events as they arrive. Without names, print
		errors, project changes, package restores, diagnostics and
		server state changes.

	req <command> [json]
		Send an OmniSharp request (e.g. /typelookup) and print the
		response body. The request arguments are read from standard
		input when json is not given.

	restart [solution-or-folder]
		Restart the server, on a new launch target if given.

	state
		Print the server state and launch target.

	version
		Print the protocol version spoken by omnisharp-proxy.

	  -proxy.addr string
	    	address used for communication between omnisharp-proxy and O (default "/tmp/ns.username.:0/omnisharp-proxy.rpc")
	  -proxy.net string
	    	network used for communication between omnisharp-proxy and O (default "unix")
	  -showconfig
	    	show configuration values and exit
	  -v	Verbose output
*/
package main
