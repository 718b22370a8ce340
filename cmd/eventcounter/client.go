package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/coder/serpent"
	"golang.org/x/xerrors"

	eventcounter "github.com/st-keller/event-counter"
	"github.com/st-keller/event-counter/transport"
)

type clientFlags struct {
	url       string
	component string
	tls       transport.TLSConfig
}

func (f *clientFlags) attach(opts *serpent.OptionSet) {
	*opts = append(*opts,
		serpent.Option{
			Flag:        "url",
			Env:         "EVENTCOUNTER_URL",
			Description: "Base URL of the introspection surface.",
			Default:     "http://127.0.0.1:9464",
			Value:       serpent.StringOf(&f.url),
		},
		serpent.Option{
			Flag:        "component",
			Env:         "EVENTCOUNTER_COMPONENT",
			Description: "Registration name of the component to query.",
			Default:     eventcounter.DefaultName,
			Value:       serpent.StringOf(&f.component),
		},
		serpent.Option{
			Flag:        "tls-cert",
			Env:         "EVENTCOUNTER_TLS_CERT",
			Description: "Client certificate for mTLS.",
			Value:       serpent.StringOf(&f.tls.CertPath),
		},
		serpent.Option{
			Flag:        "tls-key",
			Env:         "EVENTCOUNTER_TLS_KEY",
			Description: "Client key for mTLS.",
			Value:       serpent.StringOf(&f.tls.KeyPath),
		},
		serpent.Option{
			Flag:        "tls-ca",
			Env:         "EVENTCOUNTER_TLS_CA",
			Description: "CA certificate for mTLS.",
			Value:       serpent.StringOf(&f.tls.CAPath),
		},
	)
}

func (f *clientFlags) client() (*transport.Client, error) {
	c, err := transport.NewClient(f.url, f.tls)
	if err != nil {
		return nil, xerrors.Errorf("create client: %w", err)
	}
	return c, nil
}

func listCmd(flags *clientFlags) *serpent.Command {
	cmd := &serpent.Command{
		Use:        "list",
		Short:      "List every attribute of a component with its current value.",
		Middleware: serpent.RequireNArgs(0),
		Handler: func(inv *serpent.Invocation) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			snap, err := client.Collect(inv.Context(), flags.component)
			if err != nil {
				return err
			}

			names := snap.Descriptor.AttributeNames()
			sort.Strings(names)
			tw := tabwriter.NewWriter(inv.Stdout, 0, 4, 2, ' ', 0)
			for _, name := range names {
				v, ok := snap.Values[name]
				if !ok {
					continue
				}
				_, _ = fmt.Fprintf(tw, "%s\t%v\n", name, v)
			}
			return tw.Flush()
		},
	}
	flags.attach(&cmd.Options)
	return cmd
}

func getCmd(flags *clientFlags) *serpent.Command {
	cmd := &serpent.Command{
		Use:        "get <attribute>",
		Short:      "Print the current value of one attribute.",
		Middleware: serpent.RequireNArgs(1),
		Handler: func(inv *serpent.Invocation) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			v, err := client.GetAttribute(inv.Context(), flags.component, inv.Args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(inv.Stdout, v)
			return err
		},
	}
	flags.attach(&cmd.Options)
	return cmd
}

func resetCmd(flags *clientFlags) *serpent.Command {
	cmd := &serpent.Command{
		Use:        "reset",
		Short:      "Remove every event count.",
		Middleware: serpent.RequireNArgs(0),
		Handler: func(inv *serpent.Invocation) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			defer client.CloseIdleConnections()

			if _, err := client.Invoke(inv.Context(), flags.component, eventcounter.OperationReset); err != nil {
				return err
			}
			_, err = fmt.Fprintln(inv.Stdout, "reset", flags.component)
			return err
		},
	}
	flags.attach(&cmd.Options)
	return cmd
}
