package tools

import (
	"fmt"

	"github.com/refptr/refptr/std/handle"
	"github.com/refptr/refptr/std/heap"
	"github.com/spf13/cobra"
)

type demoNode struct {
	handle.RefCounted
	Label    string
	Children []handle.Strong[demoNode]
}

func (n *demoNode) Dispose() {
	for i := range n.Children {
		n.Children[i].Release()
	}
}

type Demo struct {
	heap *heap.Counting
}

// CmdDemo walks one managed object tree through its full lifecycle and
// prints the allocation ledger at each step.
func CmdDemo() *cobra.Command {
	d := Demo{}

	cmd := &cobra.Command{
		GroupID: "tools",
		Use:     "demo",
		Short:   "Walk a managed object tree through its lifecycle",
		Args:    cobra.NoArgs,
		Run:     d.run,
	}

	return cmd
}

func (d *Demo) String() string {
	return "demo"
}

func (d *Demo) run(_ *cobra.Command, _ []string) {
	d.heap = &heap.Counting{}

	root, err := handle.NewIn[demoNode](d.heap, func(n *demoNode) error {
		n.Label = "root"
		for _, label := range []string{"left", "right"} {
			child, err := handle.NewIn[demoNode](d.heap, func(c *demoNode) error {
				c.Label = label
				return nil
			})
			if err != nil {
				return err
			}
			n.Children = append(n.Children, child)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("construction failed: %s\n", err)
		return
	}
	d.stats("constructed root with two children")

	shared := root.Get().Children[0].Clone()
	d.stats(fmt.Sprintf("shared child %q, strong count %d",
		shared.Get().Label, shared.RefCount()))

	weak := root.Downgrade()
	root.Release()
	d.stats(fmt.Sprintf("released root, observer expired: %v", weak.Expired()))

	shared.Release()
	weak.Release()
	d.stats("released remaining handles")

	fmt.Printf("\n--- demo allocation ledger ---\n")
	fmt.Printf("%d grabbed, %d reclaimed, %d live\n",
		d.heap.Grabs(), d.heap.Reclaims(), d.heap.Live())
}

func (d *Demo) stats(step string) {
	fmt.Printf("%-52s live=%d\n", step, d.heap.Live())
}
