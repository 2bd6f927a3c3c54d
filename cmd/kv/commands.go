package kv

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func parseTableID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("table id must be a number: %w", err)
	}
	return uint32(id), nil
}

func parseObjectID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("object id must be a number: %w", err)
	}
	return id, nil
}

var (
	createCmd = &cobra.Command{
		Use:   "create [table] [value]",
		Short: "Creates a new object and prints its id and version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			objectID, version, err := masterClient.Create(tableID, []byte(args[1]), rulesFromFlags())
			if err != nil {
				return err
			}
			fmt.Printf("created object %d at version %d\n", objectID, version)
			return nil
		},
	}
	readCmd = &cobra.Command{
		Use:   "read [table] [id]",
		Short: "Reads an object and prints its value and version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			value, version, err := masterClient.Read(tableID, objectID, rulesFromFlags())
			if err != nil {
				return err
			}
			fmt.Printf("%s (version %d)\n", value, version)
			return nil
		},
	}
	writeCmd = &cobra.Command{
		Use:   "write [table] [id] [value]",
		Short: "Writes an object and prints the new version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			version, err := masterClient.Write(tableID, objectID, []byte(args[2]), rulesFromFlags())
			if err != nil {
				return err
			}
			fmt.Printf("wrote version %d\n", version)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [table] [id]",
		Short: "Removes an object and prints the removed version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := parseTableID(args[0])
			if err != nil {
				return err
			}
			objectID, err := parseObjectID(args[1])
			if err != nil {
				return err
			}
			version, err := masterClient.Remove(tableID, objectID, rulesFromFlags())
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Println("object did not exist")
			} else {
				fmt.Printf("removed version %d\n", version)
			}
			return nil
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Probes the master for liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := masterClient.Ping(); err != nil {
				return err
			}
			fmt.Println("pong")
			return nil
		},
	}
)
