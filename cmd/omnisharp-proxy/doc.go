/*
The program omnisharp-proxy starts an OmniSharp server for a C#
workspace and lets the O command talk to it.

OmniSharp (https://www.omnisharp.net/) provides C# language features
like auto complete, go to definition, find all references, etc. over a
line-delimited JSON protocol on its standard input and output.
Omnisharp-proxy depends on the OmniSharp server already being installed
in the system.

Omnisharp-proxy is optionally configured using a TOML-based configuration
file located at UserConfigDir/omnisharp-client/config.toml (the
-showconfig flag prints the exact location). The command line flags will
override the configuration values.

Omnisharp-proxy launches the server on the solution, project or folder
given as argument. Without an argument, it looks for launch targets
(solutions, projects, project.json files and C# scripts) in the current
directory; when there are several, the -target flag picks one. It then
listens for connections from the O command and forwards their requests
to the server, which it restarts on demand. Changes to C# files on disk
are reported to the server unless -watch=false is given.

Requests are sent to the server through three queues: a priority queue
for buffer updates, which holds back every other request, a normal queue
and a deferred queue for slow requests such as code checks. Round-trip
delays are exported as Prometheus counters when -metrics is set.

	Usage: omnisharp-proxy [flags] [solution-or-folder]

	  -cmd string
	    	OmniSharp server command, split like a shell would (e.g. 'mono "/opt/omnisharp/OmniSharp.exe"')
	  -concurrency int
	    	number of normal requests sent to the server at once (default 8)
	  -debug
	    	make the server wait for a debugger to attach
	  -log string
	    	write the OmniSharp output log to this file
	  -loglevel string
	    	OmniSharp output log level: information or verbose (default "information")
	  -metrics string
	    	serve Prometheus metrics on this address
	  -mono
	    	run a .exe server through mono
	  -proxy.addr string
	    	address used for communication between omnisharp-proxy and O (default "/tmp/ns.username.:0/omnisharp-proxy.rpc")
	  -proxy.net string
	    	network used for communication between omnisharp-proxy and O (default "unix")
	  -showconfig
	    	show configuration values and exit
	  -target string
	    	launch target to use when there are several
	  -timeout int
	    	seconds to wait for the server to load projects (default 60)
	  -v	Verbose output
	  -watch
	    	send file system changes to the server (default true)
*/
package main
