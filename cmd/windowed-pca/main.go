package main

import (
	wpca "github.com/AlbertRockG/windowed-pca"
)

func main() {
	wpca.Main()
}
