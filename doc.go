/*
Package cfddns keeps DNS "A" records pointed at the host's current public IP address.

Usage will always start with [cfddns.New],
which returns a [Client] that runs one reconciliation pass per call to [Client.Reconcile].
New requires a [Registry] implementation for a DNS provider, usually supplied with [UsingCloudflare].
Additional client configuration options are listed in the docs for New.

[RunDaemon] drives a Client on a fixed interval until its context is cancelled.
*/
package cfddns
