package ir

// Module names used by the optimizer.
const (
	ModAggr      = "aggr"
	ModAlgebra   = "algebra"
	ModBat       = "bat"
	ModBatcalc   = "batcalc"
	ModCalc      = "calc"
	ModGenerator = "generator"
	ModGroup     = "group"
	ModLanguage  = "language"
	ModMal       = "mal"
	ModMat       = "mat"
	ModOptimizer = "optimizer"
	ModSample    = "sample"
	ModSQL       = "sql"
	ModBatsql    = "batsql"
)

// Function names used by the optimizer.
const (
	FnPack         = "pack"
	FnNew          = "new"
	FnBind         = "bind"
	FnTid          = "tid"
	FnProjection   = "projection"
	FnProject      = "project"
	FnSelect       = "select"
	FnThetaselect  = "thetaselect"
	FnSelectNotNil = "selectNotNil"
	FnJoin         = "join"
	FnLeftjoin     = "leftjoin"
	FnOuterjoin    = "outerjoin"
	FnMarkjoin     = "markjoin"
	FnThetajoin    = "thetajoin"
	FnBandjoin     = "bandjoin"
	FnRangejoin    = "rangejoin"
	FnCrossproduct = "crossproduct"
	FnSemijoin     = "semijoin"
	FnDifference   = "difference"
	FnIntersect    = "intersect"
	FnFirstn       = "firstn"
	FnGroupedFirst = "groupedfirstn"
	FnSlice        = "slice"
	FnSubslice     = "subslice"
	FnGroup        = "group"
	FnGroupdone    = "groupdone"
	FnSubgroup     = "subgroup"
	FnSubgroupdone = "subgroupdone"
	FnCount        = "count"
	FnCountNoNil   = "count_no_nil"
	FnSum          = "sum"
	FnMin          = "min"
	FnMax          = "max"
	FnAvg          = "avg"
	FnProd         = "prod"
	FnSubcount     = "subcount"
	FnSubsum       = "subsum"
	FnSubmin       = "submin"
	FnSubmax       = "submax"
	FnSubavg       = "subavg"
	FnSubprod      = "subprod"
	FnMirror       = "mirror"
	FnIdentity     = "identity"
	FnDelta        = "delta"
	FnProjectdelta = "projectdelta"
	FnSubdelta     = "subdelta"
	FnSubuniform   = "subuniform"
	FnMultiplex    = "multiplex"
	FnManifold     = "manifold"
	FnSeries       = "series"
	FnImportTable  = "importTable"
	FnImportColumn = "importColumn"
	FnIfthenelse   = "ifthenelse"
	FnDbl          = "dbl"
	FnDataflow     = "dataflow"
	FnPass         = "pass"
)
