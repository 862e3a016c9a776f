package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/3xpluto/go-echo-server/internal/probe"
)

func main() {
	var target string
	var delays string
	var status int
	var timeout time.Duration
	flag.StringVar(&target, "url", "http://localhost:3000", "echo server base url")
	flag.StringVar(&delays, "delays", "300,100,200", "comma separated delays in milliseconds, one request each")
	flag.IntVar(&status, "status", 0, "status to request (0 leaves it to the server)")
	flag.DurationVar(&timeout, "timeout", 3*time.Minute, "overall deadline")
	flag.Parse()

	reqs, err := probe.ParseDelays(delays)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	for i := range reqs {
		reqs[i].Status = status
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results := probe.NewClient(target, len(reqs)).Run(ctx, reqs)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDELAY_MS\tSTATUS\tSERVER_MS\tELAPSED\tREQUEST_ID")
	failed := false
	for i, r := range results {
		if r.Err != nil {
			failed = true
			fmt.Fprintf(tw, "%d\t%d\terror\t-\t%s\t%v\n", i+1, r.Request.DelayMs, r.Elapsed.Round(time.Millisecond), r.Err)
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", i+1, r.Request.DelayMs, r.StatusCode, r.ResponseTime, r.Elapsed.Round(time.Millisecond), r.RequestID)
	}
	_ = tw.Flush()
	if failed {
		os.Exit(1)
	}
}
