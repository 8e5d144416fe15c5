package diff

import "image"

// findRegions extracts 4-connected components from the change mask and
// returns the bounding rectangle of every component whose pixel area
// exceeds minArea. Smaller components are sensor/codec noise.
// Regions are returned in raster order of their first pixel.
func findRegions(mask []bool, w, h, minArea int) []image.Rectangle {
	visited := make([]bool, len(mask))
	var regions []image.Rectangle
	var stack []int

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}

		// Flood-fill this component, tracking extent and area.
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		area := 0
		stack = append(stack[:0], start)
		visited[start] = true

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%w, p/w
			area++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			if x > 0 {
				push(mask, visited, &stack, p-1)
			}
			if x < w-1 {
				push(mask, visited, &stack, p+1)
			}
			if y > 0 {
				push(mask, visited, &stack, p-w)
			}
			if y < h-1 {
				push(mask, visited, &stack, p+w)
			}
		}

		if area > minArea {
			regions = append(regions, image.Rect(minX, minY, maxX+1, maxY+1))
		}
	}
	return regions
}

func push(mask, visited []bool, stack *[]int, p int) {
	if mask[p] && !visited[p] {
		visited[p] = true
		*stack = append(*stack, p)
	}
}
