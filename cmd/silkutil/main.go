// Command silkutil is a thin demo CLI over the ipset and bag engines: it
// prints the records of an on-disk set or bag, and sums a bag's counters.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/movsoftware/libsilk/bag"
	"github.com/movsoftware/libsilk/ipset"
	"github.com/movsoftware/libsilk/stream"
)

func main() {
	app := cli.App{
		Name:  "silkutil",
		Usage: "inspect IPset and Bag files",
		Commands: []*cli.Command{
			{
				Name:      "ipset-cat",
				Usage:     "print every CIDR block in an IPset file",
				ArgsUsage: "FILE",
				Action:    ipsetCat,
			},
			{
				Name:      "bag-cat",
				Usage:     "print every (key, counter) pair in a Bag file",
				ArgsUsage: "FILE",
				Action:    bagCat,
			},
			{
				Name:      "bag-sum",
				Usage:     "print the sum of every counter in a Bag file",
				ArgsUsage: "FILE",
				Action:    bagSum,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("silkutil: %s", err.Error())
	}
}

func openForRead(path string) (*stream.Stream, error) {
	s := stream.Create(stream.ModeRead, stream.ContentBinary)
	if err := s.Bind(path); err != nil {
		return nil, err
	}
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

func ipsetCat(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: silkutil ipset-cat FILE", 1)
	}
	s, err := openForRead(c.Args().First())
	if err != nil {
		return err
	}
	defer s.Close()

	return ipset.ProcessStream(s, func(addr []byte, prefix int) error {
		fmt.Printf("%s/%d\n", formatAddr(addr), prefix)
		return nil
	})
}

func bagCat(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: silkutil bag-cat FILE", 1)
	}
	s, err := openForRead(c.Args().First())
	if err != nil {
		return err
	}
	defer s.Close()

	return bag.ProcessStream(s, nil, func(key []byte, value uint64) error {
		fmt.Printf("%s\t%d\n", formatAddr(key), value)
		return nil
	})
}

func bagSum(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: silkutil bag-sum FILE", 1)
	}
	s, err := openForRead(c.Args().First())
	if err != nil {
		return err
	}
	defer s.Close()

	var sum uint64
	err = bag.ProcessStream(s, nil, func(_ []byte, value uint64) error {
		sum += value
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println(sum)
	return nil
}

func formatAddr(addr []byte) string {
	if len(addr) == 4 {
		return fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3])
	}
	out := ""
	for i := 0; i < len(addr); i += 2 {
		if i > 0 {
			out += ":"
		}
		out += fmt.Sprintf("%02x%02x", addr[i], addr[i+1])
	}
	return out
}
