package fromrow

// Validate checks that a container's partition and merge attributes are
// consistent with its properties. Checks run in a fixed order and stop at the
// first violation:
//
//  1. `split` only inside a split container
//  2. `stride` only inside an exact container (and must be positive)
//  3. a merging container has at least one key and one merge field; a
//     non-merging container has neither
//  4. no field is both key and merge
//
// Nested containers are validated after their parent passes. A container
// that contains itself is an ErrInvalidLayout error.
func Validate(c *Container) error {
	return validate(c, map[*Container]bool{})
}

func validate(c *Container, seen map[*Container]bool) error {
	if seen[c] {
		return badLayout(c.Pos, "container %s contains itself", c.Name)
	}
	seen[c] = true
	defer delete(seen, c)

	if err := checkSplitInNonSplitContainer(c); err != nil {
		return err
	}
	if err := checkStrideInNonExactContainer(c); err != nil {
		return err
	}
	if err := checkMergingContainerAttributes(c); err != nil {
		return err
	}
	if err := checkNotKeyAndMerge(c); err != nil {
		return err
	}

	for i := range c.Props {
		if n := c.Props[i].Nested; n != nil {
			if err := validate(n, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkSplitInNonSplitContainer(c *Container) error {
	if c.Partition == PartitionSplit {
		return nil
	}
	for i := range c.Props {
		if p := &c.Props[i]; p.Split {
			return conflict(p.Pos, "split", "explicit `split` in a container without the `split` attribute")
		}
	}
	return nil
}

func checkStrideInNonExactContainer(c *Container) error {
	for i := range c.Props {
		p := &c.Props[i]
		if !p.HasStride() {
			continue
		}
		if c.Partition != PartitionExact {
			return conflict(p.Pos, "stride", "explicit `stride` in a container without the `exact` attribute")
		}
		if p.Stride < 0 {
			return conflict(p.Pos, "stride", "stride must be positive, got %d", p.Stride)
		}
	}
	return nil
}

func checkMergingContainerAttributes(c *Container) error {
	if c.Merge != MergeNone {
		if len(c.Keys()) == 0 {
			return conflict(c.Pos, c.Merge.String(),
				"need a key field: mark at least one of the container's fields with `key`")
		}
		if len(c.Merges()) == 0 {
			return conflict(c.Pos, c.Merge.String(),
				"need a merge field: mark at least one of the container's fields with `merge`")
		}
		return nil
	}

	if keys := c.Keys(); len(keys) > 0 {
		return conflict(c.Props[keys[0]].Pos, "key",
			"`key` is only valid in containers with the `group` or `hash` attribute")
	}
	if merges := c.Merges(); len(merges) > 0 {
		return conflict(c.Props[merges[0]].Pos, "merge",
			"`merge` is only valid in containers with the `group` or `hash` attribute")
	}
	return nil
}

func checkNotKeyAndMerge(c *Container) error {
	for i := range c.Props {
		if p := &c.Props[i]; p.Key && p.Merge {
			return conflict(p.Pos, "key,merge", "cannot specify both `key` and `merge` on the same field")
		}
	}
	return nil
}
