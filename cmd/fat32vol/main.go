// Command fat32vol is a small CLI wrapper around package fat32, useful for
// inspecting and poking at FAT32 images from a shell. It is a smoke-test
// harness for the library, not a general-purpose disk utility.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/go-fat32/fat32vol/fat32"
)

func main() {
	app := cli.App{
		Name: "fat32vol",
		Usage: "Inspect and manipulate FAT32 volume images",
		Commands: []*cli.Command{
			{
				Name: "info",
				Usage: "Print volume geometry and free space",
				Action: infoCmd,
				ArgsUsage: "IMAGE_FILE",
			},
			{
				Name: "ls",
				Usage: "List a directory's entries",
				Action: lsCmd,
				ArgsUsage: "IMAGE_FILE [PATH]",
			},
			{
				Name: "cat",
				Usage: "Print a file's contents to stdout",
				Action: catCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name: "append",
				Usage: "Append bytes from stdin to a file, creating it if needed",
				Action: appendCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name: "mkdir",
				Usage: "Create a directory",
				Action: mkdirCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
			{
				Name: "rm",
				Usage: "Delete a file",
				Action: rmCmd,
				ArgsUsage: "IMAGE_FILE PATH",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openImage(path string) (*fat32.Mount, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}
	dev := &fileBlockIO{f: f}
	mnt, err := fat32.MountImage(dev)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return mnt, f, nil
}

func infoCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: fat32vol info IMAGE_FILE")
	}
	mnt, f, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Println(mnt.Vol.String())
	return nil
}

func lsCmd(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: fat32vol ls IMAGE_FILE [PATH]")
	}
	mnt, f, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	path := "/"
	if c.NArg() >= 2 {
		path = c.Args().Get(1)
	}
	cluster, err := mnt.Resolver.Resolve(path, mnt.Vol.CWD)
	if err != nil {
		return err
	}

	return mnt.Dir.ForEach(cluster, func(e fat32.Entry) bool {
		if e.FDI.IsLive() {
			fmt.Printf("%-12s %10d\n", e.FDI.DisplayName(), e.FDI.FileSize)
		}
		return true
	})
}

func catCmd(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: fat32vol cat IMAGE_FILE PATH")
	}
	mnt, f, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := mnt.Open(c.Args().Get(1))
	if err != nil {
		return err
	}
	defer mnt.Close(h)

	buf := make([]byte, h.Size())
	n, err := mnt.Read(h, buf)
	if err != nil && err != io.EOF && n == 0 {
		return err
	}
	_, err = os.Stdout.Write(buf[:n])
	return err
}

func appendCmd(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: fat32vol append IMAGE_FILE PATH")
	}
	mnt, f, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	path := c.Args().Get(1)
	h, err := mnt.Open(path)
	if err != nil {
		h, err = mnt.CreateFile(path)
		if err != nil {
			return err
		}
	}
	defer mnt.Close(h)

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return mnt.Append(h, data)
}

func mkdirCmd(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: fat32vol mkdir IMAGE_FILE PATH")
	}
	mnt, f, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	return mnt.CreateDir(c.Args().Get(1))
}

func rmCmd(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: fat32vol rm IMAGE_FILE PATH")
	}
	mnt, f, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer f.Close()

	return mnt.Delete(c.Args().Get(1))
}
