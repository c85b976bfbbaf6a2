// Package spectralseg provides unsupervised spectral image segmentation
// as a batch pipeline over an artifact store.
//
// Per image, the pipeline consumes dense per-patch feature vectors
// produced by an upstream extractor and runs:
//
//   - Affinity construction: a symmetric non-negative patch similarity
//     graph W = F·Fᵀ, optionally fused with a local color affinity of
//     the downsampled image (k-NN or random-walk).
//   - Eigendecomposition: the K smallest eigenpairs of the (optionally
//     degree-normalized) graph Laplacian, with a shift-invert solver
//     and a dense fallback, plus raw-affinity and SVD variants.
//   - Sign canonicalization: eigenvector signs are normalized so runs
//     are reproducible regardless of solver sign convention.
//   - Discretization: K-means over the eigenvector embedding (fixed or
//     eigengap-adaptive cluster count), background-region inference,
//     morphological cleanup; or a binary single-region threshold map.
//   - Bounding boxes: per-segment boxes in patch and pixel coordinates.
//
// # Quick Start
//
// Run the full pipeline over a local artifact directory:
//
//	ctx := context.Background()
//	p := spectralseg.New(
//	    artifact.NewLocalBackend("./data/VOC2012"),
//	    spectralseg.WithImagesDir("./data/VOC2012/images"),
//	    spectralseg.WithWorkers(8),
//	)
//
//	eo := spectralseg.DefaultEigsOptions()
//	eo.ImageColorLambda = 10 // fuse color affinity
//	if _, err := p.ExtractEigs(ctx, ids, eo); err != nil {
//	    log.Fatal(err)
//	}
//
//	mo := spectralseg.DefaultMultiRegionOptions()
//	mo.Adaptive = true
//	if _, err := p.ExtractMultiRegionSegmentations(ctx, ids, mo); err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := p.ExtractBoundingBoxes(ctx, ids, spectralseg.DefaultBBoxOptions()); err != nil {
//	    log.Fatal(err)
//	}
//
// Every stage is idempotent: images whose output artifact already
// exists are skipped, so interrupted batches can simply be re-run.
// Per-image failures are logged and reported in the returned summary
// without aborting the rest of the batch.
package spectralseg
