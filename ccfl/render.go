package ccfl

import (
	"fmt"
	"path"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

func leafDescription(node *CCTNode) string {
	return fmt.Sprintf("n=%d\nmean=%.3v", node.NPoints, node.Mean)
}

func splitDescription(node *CCTNode) string {
	return fmt.Sprintf("n=%d\ncols=%v\nu <= %.4g", node.NPoints, node.IIn, node.PartitionPoint)
}

func recurrentDraw(g *cgraph.Graph, node *CCTNode, counter *int, parentNode *cgraph.Node) {
	currentNode, err := g.CreateNode(fmt.Sprint(*counter))
	HandleError(err)
	*counter++

	if parentNode != nil {
		_, err = g.CreateEdge("", parentNode, currentNode)
		HandleError(err)
	}

	if node.BLeaf {
		currentNode.Set("label", leafDescription(node))
		currentNode.Set("shape", "box")
		return
	}
	currentNode.Set("label", splitDescription(node))
	recurrentDraw(g, node.LessThanChild, counter, currentNode)
	recurrentDraw(g, node.GreaterThanChild, counter, currentNode)
}

//DrawGraph builds a graphviz graph of one tree, leaves as boxes with
//their output means, internal nodes with their column set and threshold.
func (t *CCT) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	counter := 0
	recurrentDraw(graph, t.Root, &counter, nil)

	return graphViz, graph
}

//RenderTrees renders every tree of the forest into picturesDirectory,
//one file per tree named by dumpPrefix and the tree index.
func (f *Forest) RenderTrees(dumpPrefix, figureType, picturesDirectory string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	for graphInd, currentTree := range f.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph := currentTree.DrawGraph()
		HandleError(graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename)))
	}
}

//RenderTree renders the tree at treeIndex into an svg file.
func (f *Forest) RenderTree(treeIndex int, fileName string) error {
	if treeIndex < 0 || treeIndex >= len(f.Trees) {
		return &InvalidInputError{Reason: "tree index out of range"}
	}
	graphViz, graph := f.Trees[treeIndex].DrawGraph()
	return graphViz.RenderFilename(graph, graphviz.SVG, fileName)
}
