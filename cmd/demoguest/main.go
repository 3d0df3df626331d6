// demoguest drives the operation bus from a JavaScript guest script, using
// the otto-based jsguest harness instead of a real V8/Deno isolate. It is a
// smoke test and a worked example of the host/guest contract, not a
// production entry point.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/queue"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/stream"
	"github.com/arfaz/opbus/jsguest"
	"github.com/arfaz/opbus/ops"
)

// Ops whose contract is plain JSON in, JSON out can run over jsguest's
// bridge; ops that need a zero-copy buffer (read, write,
// get_random_values) cannot and are out of scope for this demo.
const opResources uint32 = 1

func main() {
	scriptFile := flag.String("script", "", "Path to a JS file to run instead of the built-in demo script")
	flag.Parse()

	q := queue.New(queue.RecommendedSize)
	d := dispatch.New(q, 0, nil)

	table := resource.New()
	table.AddAt(0, stream.TagStdin, stream.Stdin())

	resources := &ops.Resources{Table: table}
	d.Register(opResources, "resources", resources.List)

	guest, err := jsguest.New(d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "demoguest: %v\n", err)
		os.Exit(1)
	}

	script := demoScript
	if *scriptFile != "" {
		data, err := os.ReadFile(*scriptFile) // #nosec G304 -- operator-supplied demo script path
		if err != nil {
			fmt.Fprintf(os.Stderr, "demoguest: read script: %v\n", err)
			os.Exit(1)
		}
		script = string(data)
	}

	result, err := guest.Eval(script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "demoguest: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result)
}

const demoScript = `
var res = opbus.call("resources", {});
print_result = "resident resources: " + JSON.stringify(res.ok);
print_result;
`
