package biz

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA 将 n×d 矩阵投影到前 dims 个主成分上。
// 可用主成分不足 dims 时其余坐标补 0；少于 2 行时返回全 0。
func PCA(x [][]float64, dims int) ([][]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	d := len(x[0])
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dims)
	}
	if n < 2 || d == 0 || dims <= 0 {
		return out, nil
	}

	data := mat.NewDense(n, d, nil)
	for i, row := range x {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d dimensions, want %d", i, len(row), d)
		}
		data.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, fmt.Errorf("principal component analysis failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, available := vecs.Dims()
	k := min(dims, available)

	// 先中心化再投影
	centered := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, data)
		mean := stat.Mean(col, nil)
		for i := range col {
			centered.Set(i, j, col[i]-mean)
		}
	}

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, k))
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			out[i][j] = proj.At(i, j)
		}
	}
	return out, nil
}
